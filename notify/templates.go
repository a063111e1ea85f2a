package notify

import (
	"text/template"

	almalead "github.com/phbpx/almalead"
)

type templateData struct {
	Lead    almalead.Lead
	AppName string
}

var (
	prospectSubject = template.Must(template.New("prospect_subject").Parse(
		`Thank you for your submission`))

	prospectBody = template.Must(template.New("prospect_body").Parse(
		`Dear {{.Lead.FirstName}},

Thank you for submitting your information to {{.AppName}}.

We have received your application and our team will review it shortly.
You can expect to hear from us within 2-3 business days.

Best regards,
The {{.AppName}} Team`))

	attorneySubject = template.Must(template.New("attorney_subject").Parse(
		`New Lead Submission: {{.Lead.FirstName}} {{.Lead.LastName}}`))

	attorneyBody = template.Must(template.New("attorney_body").Parse(
		`New lead submission received:

Name: {{.Lead.FirstName}} {{.Lead.LastName}}
Email: {{.Lead.Email}}
Lead ID: {{.Lead.ID}}
Resume: {{.Lead.ResumeURL}}

Please review the lead in the dashboard.`))
)
