package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"visitordesk/internal/visitor"
)

const (
	subjectSubmission  = "New Visitor Approval/Disapproval Request"
	subjectApproved    = "Your Visit Request Approved"
	subjectDisapproved = "Your Visit Request Disapproved"
)

var submissionHTML = template.Must(template.New("submission").Parse(`
<h1>New Visitor Approval/Disapproval Request</h1>
<p><strong>Visitor:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Purpose:</strong> {{.Purpose}}</p>
<p>Please review and respond to the visitor's request:</p>
<p>
    <a href="{{.Approve}}" style="padding: 10px; color: white; background-color: green; text-decoration: none;">Approve</a>
    &nbsp;&nbsp;
    <a href="{{.Disapprove}}" style="padding: 10px; color: white; background-color: red; text-decoration: none;">Disapprove</a>
</p>
`))

type submissionView struct {
	Name       string
	Email      string
	Purpose    string
	Approve    string
	Disapprove string
}

func renderSubmissionHTML(e *visitor.Entry, links visitor.Links) (string, error) {
	var buf bytes.Buffer
	err := submissionHTML.Execute(&buf, submissionView{
		Name:       e.Name,
		Email:      e.Email,
		Purpose:    e.Purpose,
		Approve:    links.Approve,
		Disapprove: links.Disapprove,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderSubmissionText(e *visitor.Entry, links visitor.Links) string {
	return fmt.Sprintf("Visitor: %s\nEmail: %s\nPurpose: %s\n\nApprove: %s\nDisapprove: %s\n",
		e.Name, e.Email, e.Purpose, links.Approve, links.Disapprove)
}

func outcomeContent(e *visitor.Entry) (subject, body string, err error) {
	switch e.Status {
	case visitor.StatusApproved:
		return subjectApproved, fmt.Sprintf("Hello %s,\n\nYour request to meet has been approved!", e.Name), nil
	case visitor.StatusDisapproved:
		return subjectDisapproved, fmt.Sprintf("Hello %s,\n\nUnfortunately, your visit request was disapproved.", e.Name), nil
	}
	return "", "", fmt.Errorf("no outcome notice for status %q", e.Status)
}
