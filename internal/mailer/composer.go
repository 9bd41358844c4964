// Package mailer composes and delivers the operator notification for one
// submission. The composer renders HTML with contextual auto-escaping so
// submitter-controlled text can never inject markup; the dispatcher speaks
// plain SMTP to a fixed recipient.
package mailer

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/sutcoin/business/internal/model"
)

var bodyTemplate = template.Must(template.New("notification").Parse(`<html>
<body>
<h2>New business registration</h2>
<table border="0" cellpadding="4">
<tr><td><b>Business name</b></td><td>{{.Fields.BusinessName}}</td></tr>
<tr><td><b>Address</b></td><td>{{.Fields.Address}}</td></tr>
<tr><td><b>Phone</b></td><td>{{.Fields.Phone}}</td></tr>
<tr><td><b>Discount rate</b></td><td>{{.Fields.DiscountRate}}</td></tr>
<tr><td><b>Map</b></td><td><a href="{{.Fields.MapLink}}">{{.Fields.MapLink}}</a></td></tr>
{{if .Fields.PromoTag}}<tr><td><b>Promo tag</b></td><td>{{.Fields.PromoTag}}</td></tr>
{{end}}<tr><td><b>Description</b></td><td>{{range $i, $line := .DescriptionLines}}{{if $i}}<br>{{end}}{{$line}}{{end}}</td></tr>
</table>
{{if .Images}}<h3>Photos ({{len .Images}})</h3>
<ol>
{{range .Images}}<li>{{if .URL}}<a href="{{.URL}}">{{.Key}}</a>{{else}}{{.Key}} (link unavailable){{end}}</li>
{{end}}</ol>
{{else}}<p>No images attached.</p>
{{end}}</body>
</html>
`))

type bodyData struct {
	Fields           model.SubmissionFields
	DescriptionLines []string
	Images           []model.StoredImage
}

// Composer renders notifications for a fixed recipient.
type Composer struct {
	Recipient string
}

// Compose builds the notification from the validated fields and the outcomes
// of the per-file pipeline. Skipped files are omitted from the body; when
// nothing was stored the body says so explicitly.
func (c Composer) Compose(fields model.SubmissionFields, outcomes []model.UploadOutcome) (model.Notification, error) {
	data := bodyData{
		Fields:           fields,
		DescriptionLines: splitLines(fields.Description),
	}
	for _, outcome := range outcomes {
		if outcome.Stored != nil {
			data.Images = append(data.Images, *outcome.Stored)
		}
	}
	var buf strings.Builder
	if err := bodyTemplate.Execute(&buf, data); err != nil {
		return model.Notification{}, fmt.Errorf("render notification: %w", err)
	}
	return model.Notification{
		Recipient: c.Recipient,
		Subject:   subjectFor(fields.BusinessName),
		HTMLBody:  buf.String(),
	}, nil
}

// subjectFor encodes the business name the same way the body does and strips
// line breaks so the value cannot smuggle extra mail headers.
func subjectFor(businessName string) string {
	name := strings.NewReplacer("\r", "", "\n", "").Replace(businessName)
	return "New business registration: " + template.HTMLEscapeString(name)
}

func splitLines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}
