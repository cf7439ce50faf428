package notify

import (
	"bytes"
	"fmt"
	"text/template"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

// SMSTemplate names the text used for a job offer by SMS.
type SMSTemplate string

const (
	SMSPhysicalJob SMSTemplate = "sms.physical_job"
	SMSPhoneJob    SMSTemplate = "sms.phone_job"
)

var smsTemplates = map[SMSTemplate]*template.Template{
	SMSPhysicalJob: template.Must(template.New(string(SMSPhysicalJob)).Parse(
		"Hej! Vi har en ny tolkning på plats i {{.Town}} den {{.Date}} kl {{.Time}}, {{.Duration}}. " +
			"Logga in i appen och acceptera bokning #{{.JobID}}. Tack! DigitalTolk")),
	SMSPhoneJob: template.Must(template.New(string(SMSPhoneJob)).Parse(
		"Hej! Vi har en ny telefontolkning den {{.Date}} kl {{.Time}}, {{.Duration}}. " +
			"Logga in i appen och acceptera bokning #{{.JobID}}. Tack! DigitalTolk")),
}

type smsData struct {
	Town     string
	Date     string
	Time     string
	Duration string
	JobID    int64
}

// SMSTemplateFor picks the physical template for on-site-only jobs and the phone
// template otherwise.
func SMSTemplateFor(job *domain.Job) SMSTemplate {
	if job.PhysicalOnly() {
		return SMSPhysicalJob
	}
	return SMSPhoneJob
}

// RenderSMS renders the job offer text. town is used by the physical template.
func RenderSMS(job *domain.Job, town string, loc *time.Location) (string, error) {
	if loc == nil {
		loc = time.UTC
	}
	due := job.Due.In(loc)
	data := smsData{
		Town:     town,
		Date:     due.Format("02.01.2006"),
		Time:     due.Format("15:04"),
		Duration: domain.HoursMinutes(job.Duration),
		JobID:    job.ID,
	}

	tpl := SMSTemplateFor(job)
	var buf bytes.Buffer
	if err := smsTemplates[tpl].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", tpl, err)
	}
	return buf.String(), nil
}
