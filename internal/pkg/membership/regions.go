package membership

// Region is a state or union territory a provider operates in.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Regions is the fixed reference list offered by the wizard.
var Regions = []Region{
	{"AN", "Andaman and Nicobar Islands"},
	{"AP", "Andhra Pradesh"},
	{"AR", "Arunachal Pradesh"},
	{"AS", "Assam"},
	{"BR", "Bihar"},
	{"CH", "Chandigarh"},
	{"CT", "Chhattisgarh"},
	{"DN", "Dadra and Nagar Haveli and Daman and Diu"},
	{"DL", "Delhi"},
	{"GA", "Goa"},
	{"GJ", "Gujarat"},
	{"HR", "Haryana"},
	{"HP", "Himachal Pradesh"},
	{"JK", "Jammu and Kashmir"},
	{"JH", "Jharkhand"},
	{"KA", "Karnataka"},
	{"KL", "Kerala"},
	{"LA", "Ladakh"},
	{"LD", "Lakshadweep"},
	{"MP", "Madhya Pradesh"},
	{"MH", "Maharashtra"},
	{"MN", "Manipur"},
	{"ML", "Meghalaya"},
	{"MZ", "Mizoram"},
	{"NL", "Nagaland"},
	{"OR", "Odisha"},
	{"PY", "Puducherry"},
	{"PB", "Punjab"},
	{"RJ", "Rajasthan"},
	{"SK", "Sikkim"},
	{"TN", "Tamil Nadu"},
	{"TG", "Telangana"},
	{"TR", "Tripura"},
	{"UP", "Uttar Pradesh"},
	{"UT", "Uttarakhand"},
	{"WB", "West Bengal"},
}

// IsValidRegion reports whether code is in Regions.
func IsValidRegion(code string) bool {
	for _, r := range Regions {
		if r.Code == code {
			return true
		}
	}
	return false
}

// RegionName returns the display name of code, or code itself.
func RegionName(code string) string {
	for _, r := range Regions {
		if r.Code == code {
			return r.Name
		}
	}
	return code
}
