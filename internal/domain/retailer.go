package domain

// Retailer identifies one grocery chain acting as an independent catalog source.
type Retailer string

func (r Retailer) String() string {
	return string(r)
}

const (
	RetailerTesco      Retailer = "tesco"
	RetailerAsda       Retailer = "asda"
	RetailerSainsburys Retailer = "sainsburys"
	RetailerMorrisons  Retailer = "morrisons"
)

var Retailers = []Retailer{
	RetailerTesco,
	RetailerAsda,
	RetailerSainsburys,
	RetailerMorrisons,
}

func (r Retailer) DisplayName() string {
	switch r {
	case RetailerTesco:
		return "Tesco"
	case RetailerAsda:
		return "ASDA"
	case RetailerSainsburys:
		return "Sainsbury's"
	case RetailerMorrisons:
		return "Morrisons"
	default:
		return string(r)
	}
}
