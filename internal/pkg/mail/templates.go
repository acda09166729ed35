package mail

import (
	"bytes"
	"html/template"
)

// KYCReviewData fills the KYC review email.
type KYCReviewData struct {
	ProviderName string
	Title        string
	Message      string
	Remarks      string
	Link         string
}

var kycReviewTmpl = template.Must(template.New("kyc_review").Parse(`<p>Hello {{.ProviderName}},</p>
<p><strong>{{.Title}}</strong></p>
<p>{{.Message}}</p>
{{if .Remarks}}<p>Reviewer remarks: {{.Remarks}}</p>{{end}}
<p><a href="{{.Link}}">Open your verification status</a></p>
<p>FeeBook</p>
`))

// RenderKYCReview returns subject and HTML body of the review email.
func RenderKYCReview(d KYCReviewData) (string, string, error) {
	var buf bytes.Buffer
	if err := kycReviewTmpl.Execute(&buf, d); err != nil {
		return "", "", err
	}
	return "FeeBook verification: " + d.Title, buf.String(), nil
}
