package receipt

// merchantEntry maps a canonical merchant name to the text fragments that
// identify it on a printed receipt and to its expense category. Order matters:
// the first entry whose alias appears in the header lines wins.
type merchantEntry struct {
	canonical string
	aliases   []string
	category  string
}

var merchantDictionary = []merchantEntry{
	// Groceries
	{"WALMART", []string{"walmart", "wal-mart", "wal mart"}, "Groceries"},
	{"KROGER", []string{"kroger"}, "Groceries"},
	{"SAFEWAY", []string{"safeway"}, "Groceries"},
	{"COSTCO", []string{"costco", "costco wholesale"}, "Groceries"},
	{"TRADER JOE'S", []string{"trader joe"}, "Groceries"},
	{"WHOLE FOODS", []string{"whole foods", "wholefds"}, "Groceries"},
	{"ALDI", []string{"aldi"}, "Groceries"},

	// Pharmacy
	{"CVS PHARMACY", []string{"cvs"}, "Pharmacy"},
	{"WALGREENS", []string{"walgreens"}, "Pharmacy"},
	{"RITE AID", []string{"rite aid", "riteaid"}, "Pharmacy"},

	// Fuel
	{"SHELL", []string{"shell oil", "shell service", "shell gas"}, "Fuel"},
	{"CHEVRON", []string{"chevron"}, "Fuel"},
	{"EXXON", []string{"exxon", "exxonmobil"}, "Fuel"},
	{"BP", []string{"bp gas", "bp station"}, "Fuel"},

	// Dining
	{"MCDONALD'S", []string{"mcdonald"}, "Dining"},
	{"STARBUCKS", []string{"starbucks"}, "Dining"},
	{"SUBWAY", []string{"subway"}, "Dining"},
	{"CHIPOTLE", []string{"chipotle"}, "Dining"},
	{"BURGER KING", []string{"burger king"}, "Dining"},

	// Shopping
	{"TARGET", []string{"target"}, "Shopping"},
	{"HOME DEPOT", []string{"home depot"}, "Shopping"},
	{"BEST BUY", []string{"best buy"}, "Shopping"},
	{"AMAZON", []string{"amazon"}, "Shopping"},
}

// categoryKeyword pairs a text fragment with the category it implies. Used
// when the merchant is not in the dictionary; scanned in order against the
// lowercased full text, first hit wins.
type categoryKeyword struct {
	keyword  string
	category string
}

var categoryKeywords = []categoryKeyword{
	{"pharmacy", "Pharmacy"},
	{"prescription", "Pharmacy"},
	{"drug store", "Pharmacy"},
	{"fuel", "Fuel"},
	{"gasoline", "Fuel"},
	{"unleaded", "Fuel"},
	{"diesel", "Fuel"},
	{"petrol", "Fuel"},
	{"restaurant", "Dining"},
	{"cafe", "Dining"},
	{"coffee", "Dining"},
	{"diner", "Dining"},
	{"pizzeria", "Dining"},
	{"grocery", "Groceries"},
	{"supermarket", "Groceries"},
	{"market", "Groceries"},
}
