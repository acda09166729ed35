package kyc

import (
	"errors"
	"io"
	"mime/multipart"
	"path/filepath"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// EntityType is the legal form of an organization.
type EntityType string

const (
	EntityPvtLtd         EntityType = "PVT_LTD"
	EntityPublicLtd      EntityType = "PUBLIC_LTD"
	EntityGovtEntity     EntityType = "GOVT_ENTITY"
	EntityOPC            EntityType = "OPC"
	EntityLLP            EntityType = "LLP"
	EntityPartnership    EntityType = "PARTNERSHIP"
	EntityProprietorship EntityType = "PROPRIETORSHIP"
	EntityTrust          EntityType = "TRUST"
	EntitySociety        EntityType = "SOCIETY"
)

var EntityTypes = []EntityType{
	EntityPvtLtd, EntityPublicLtd, EntityGovtEntity, EntityOPC, EntityLLP,
	EntityPartnership, EntityProprietorship, EntityTrust, EntitySociety,
}

// Requirements lists the conditional fields of an entity type.
type Requirements struct {
	CIN   bool `json:"cin"`
	LLPIN bool `json:"llpin"`
	GST   bool `json:"gst"`
}

// RequirementsFor returns which registrations an entity type must provide.
func RequirementsFor(t EntityType) Requirements {
	var r Requirements
	switch t {
	case EntityPvtLtd, EntityPublicLtd, EntityGovtEntity, EntityOPC:
		r.CIN = true
	case EntityLLP:
		r.LLPIN = true
	}
	r.GST = t != EntityTrust && t != EntitySociety
	return r
}

// Document field names.
const (
	DocPAN              = "panDocument"
	DocAadhaar          = "aadhaarDocument"
	DocGST              = "gstDocument"
	DocRegistration     = "registrationCertificate"
	DocSignatoryPAN     = "signatory.panDocument"
	DocSignatoryAadhaar = "signatory.aadhaarDocument"
)

const (
	minimumAgeYears         = 18
	birthDateLayout         = "2006-01-02"
	invalidSubmissionReason = "Please correct the highlighted fields"
)

var (
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^[2-9][0-9]{11}$`)
	cinPattern     = regexp.MustCompile(`^[LU][0-9]{5}[A-Z]{2}[0-9]{4}[A-Z]{3}[0-9]{6}$`)
	gstinPattern   = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)
	pincodePattern = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	llpinPattern   = regexp.MustCompile(`^[A-Z]{3}-[0-9]{4}$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, re := range map[string]*regexp.Regexp{
		"pan":     panPattern,
		"aadhaar": aadhaarPattern,
		"cin":     cinPattern,
		"gstin":   gstinPattern,
		"pincode": pincodePattern,
		"llpin":   llpinPattern,
	} {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	return v
}

var tagMessages = map[string]string{
	"required": "is required",
	"pan":      "must be a valid PAN (e.g. ABCDE1234F)",
	"aadhaar":  "must be 12 digits and cannot start with 0 or 1",
	"cin":      "must be a valid CIN",
	"gstin":    "must be a valid GSTIN",
	"pincode":  "must be a valid 6-digit pincode",
	"llpin":    "must be a valid LLPIN (e.g. AAA-1234)",
	"max":      "is too long",
	"oneof":    "has an unsupported value",
}

// ValidationErrors maps flattened field names to messages. Every failed
// check is collected.
type ValidationErrors map[string]string

func (e ValidationErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e[k])
	}
	return invalidSubmissionReason + ": " + strings.Join(parts, "; ")
}

func (e ValidationErrors) add(field, msg string) {
	if _, exists := e[field]; !exists {
		e[field] = msg
	}
}

func (e ValidationErrors) collect(err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if err != nil {
			e.add("form", err.Error())
		}
		return
	}
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		e.add(field, msg)
	}
}

// Address is a postal address.
type Address struct {
	Line1   string `form:"line1" json:"line1" validate:"required,max=200"`
	Line2   string `form:"line2" json:"line2" validate:"max=200"`
	City    string `form:"city" json:"city" validate:"required,max=100"`
	State   string `form:"state" json:"state" validate:"required,max=100"`
	Pincode string `form:"pincode" json:"pincode" validate:"required,pincode"`
}

// Signatory is the authorized person of an organization.
type Signatory struct {
	Name    string `form:"name" json:"name" validate:"required,max=150"`
	PAN     string `form:"pan" json:"pan" validate:"required,pan"`
	Aadhaar string `form:"aadhaar" json:"aadhaar" validate:"required,aadhaar"`
}

// OrganizationForm is the KYC form of an organization provider.
type OrganizationForm struct {
	EntityType       EntityType `form:"entityType" json:"entityType" validate:"required,oneof=PVT_LTD PUBLIC_LTD GOVT_ENTITY OPC LLP PARTNERSHIP PROPRIETORSHIP TRUST SOCIETY"`
	OrganizationName string     `form:"organizationName" json:"organizationName" validate:"required,max=200"`
	CIN              string     `form:"cin" json:"cin" validate:"omitempty,cin"`
	LLPIN            string     `form:"llpin" json:"llpin" validate:"omitempty,llpin"`
	GSTNumber        string     `form:"gstNumber" json:"gstNumber" validate:"omitempty,gstin"`
	PAN              string     `form:"pan" json:"pan" validate:"required,pan"`
	Address          Address    `form:"address" json:"address"`
	Signatory        Signatory  `form:"signatory" json:"signatory"`
}

// Normalize upper-cases registration numbers and trims whitespace.
func (f *OrganizationForm) Normalize() {
	f.EntityType = EntityType(strings.ToUpper(strings.TrimSpace(string(f.EntityType))))
	f.OrganizationName = strings.TrimSpace(f.OrganizationName)
	f.CIN = upper(f.CIN)
	f.LLPIN = upper(f.LLPIN)
	f.GSTNumber = upper(f.GSTNumber)
	f.PAN = upper(f.PAN)
	f.Signatory.PAN = upper(f.Signatory.PAN)
	f.Signatory.Aadhaar = digits(f.Signatory.Aadhaar)
	f.Signatory.Name = strings.TrimSpace(f.Signatory.Name)
	normalizeAddress(&f.Address)
}

// RequiredDocuments lists the document fields this form needs.
func (f *OrganizationForm) RequiredDocuments() []string {
	docs := []string{DocPAN, DocRegistration, DocSignatoryPAN, DocSignatoryAadhaar}
	if RequirementsFor(f.EntityType).GST {
		docs = append(docs, DocGST)
	}
	return docs
}

// Validate checks field formats and the entity-type rules.
func (f *OrganizationForm) Validate() ValidationErrors {
	errs := ValidationErrors{}
	errs.collect(validate.Struct(f))

	req := RequirementsFor(f.EntityType)
	if req.CIN && f.CIN == "" {
		errs.add("cin", "is required for this entity type")
	}
	if req.LLPIN && f.LLPIN == "" {
		errs.add("llpin", "is required for LLPs")
	}
	if req.GST && f.GSTNumber == "" {
		errs.add("gstNumber", "is required for this entity type")
	}
	return errs
}

// IndividualForm is the KYC form of an individual provider.
type IndividualForm struct {
	FullName    string  `form:"fullName" json:"fullName" validate:"required,max=150"`
	DateOfBirth string  `form:"dateOfBirth" json:"dateOfBirth" validate:"required"`
	PAN         string  `form:"pan" json:"pan" validate:"required,pan"`
	Aadhaar     string  `form:"aadhaar" json:"aadhaar" validate:"required,aadhaar"`
	Address     Address `form:"address" json:"address"`
}

func (f *IndividualForm) Normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.DateOfBirth = strings.TrimSpace(f.DateOfBirth)
	f.PAN = upper(f.PAN)
	f.Aadhaar = digits(f.Aadhaar)
	normalizeAddress(&f.Address)
}

func (f *IndividualForm) RequiredDocuments() []string {
	return []string{DocPAN, DocAadhaar}
}

// Validate checks field formats and that the person is at least 18 on now.
func (f *IndividualForm) Validate(now time.Time) ValidationErrors {
	errs := ValidationErrors{}
	errs.collect(validate.Struct(f))
	if f.DateOfBirth != "" {
		dob, err := time.Parse(birthDateLayout, f.DateOfBirth)
		switch {
		case err != nil:
			errs.add("dateOfBirth", "must be a date (YYYY-MM-DD)")
		case AgeOn(dob, now) < minimumAgeYears:
			errs.add("dateOfBirth", "you must be at least 18 years old")
		}
	}
	return errs
}

// AgeOn returns completed years between dob and now by calendar date.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

func normalizeAddress(a *Address) {
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Pincode = digits(a.Pincode)
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// Flatten turns a form into parent.child keyed values using form tags.
func Flatten(form any) map[string]string {
	out := map[string]string{}
	flattenValue(reflect.Indirect(reflect.ValueOf(form)), "", out)
	return out
}

func flattenValue(v reflect.Value, prefix string, out map[string]string) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		key := name
		if prefix != "" {
			key = prefix + "." + name
		}
		fv := v.Field(i)
		if fv.Kind() == reflect.Struct {
			flattenValue(fv, key, out)
			continue
		}
		if s := fv.String(); s != "" {
			out[key] = s
		}
	}
}

// Document is an uploaded file part.
type Document struct {
	Filename string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Ext returns the lower-cased file extension.
func (d Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

// FromFileHeader adapts a multipart file part.
func FromFileHeader(fh *multipart.FileHeader) Document {
	return Document{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
