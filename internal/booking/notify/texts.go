package notify

import (
	"fmt"
	"time"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

const (
	dueLayout  = "2006-01-02 15:04"
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Texts renders the user facing strings of notifications. Times are shown in the
// booking location.
type Texts struct {
	loc *time.Location
}

// NewTexts creates a renderer for loc, UTC when nil.
func NewTexts(loc *time.Location) Texts {
	if loc == nil {
		loc = time.UTC
	}
	return Texts{loc: loc}
}

// Due formats the job's due time.
func (t Texts) Due(job *domain.Job) string {
	return job.Due.In(t.loc).Format(dueLayout)
}

// DueDate and DueTime split the due time for push data.
func (t Texts) DueDate(job *domain.Job) string {
	return job.Due.In(t.loc).Format(dateLayout)
}

func (t Texts) DueTime(job *domain.Job) string {
	return job.Due.In(t.loc).Format(timeLayout)
}

var certificationLabels = map[domain.Certification][]string{
	domain.CertBoth:    {"Godkänd tolk", "Auktoriserad"},
	domain.CertYes:     {"Auktoriserad"},
	domain.CertNHealth: {"Sjukvårdstolk"},
	domain.CertLaw:     {"Rättstolk"},
}

// JobFor lists the display labels of the job's gender and certification requirements.
func JobFor(job *domain.Job) []string {
	out := []string{}
	switch job.Gender {
	case domain.GenderMale:
		out = append(out, "Man")
	case domain.GenderFemale:
		out = append(out, "Kvinna")
	}
	if job.Certified == domain.CertNone {
		return out
	}
	if labels, ok := certificationLabels[job.Certified]; ok {
		return append(out, labels...)
	}
	return append(out, string(job.Certified))
}

// Broadcast is the suitable_job offer text.
func (t Texts) Broadcast(job *domain.Job, language string) string {
	if job.Immediate {
		return fmt.Sprintf("Ny akutbokning för %stolk %dmin", language, job.Duration)
	}
	return fmt.Sprintf("Ny bokning för %stolk %dmin %s", language, job.Duration, t.Due(job))
}

// Push is the text of a targeted push.
func (t Texts) Push(msg Message, job *domain.Job, language string) string {
	due := t.Due(job)
	switch msg {
	case MsgBookingAccepted:
		return fmt.Sprintf("Din bokning för %s translators, %dmin, %s har accepterats av en tolk. "+
			"Vänligen öppna appen för att se detaljer om tolken.", language, job.Duration, due)
	case MsgAcceptConfirmed:
		return t.Accepted(job, language)
	case MsgCustomerCancelled:
		return fmt.Sprintf("Kunden har avbokat bokningen för %stolk, %dmin, %s. "+
			"Var god och kolla dina tidigare bokningar för detaljer.", language, job.Duration, due)
	case MsgTranslatorCancelled:
		return fmt.Sprintf("Er %stolk, %dmin %s, har avbokat tolkningen. "+
			"Vi letar nu efter en ny tolk som kan ersätta denne. Tack.", language, job.Duration, due)
	case MsgJobExpired:
		return fmt.Sprintf("Tyvärr har ingen tolk accepterat er bokning: (%s, %dmin, %s). "+
			"Vänligen pröva boka om tiden.", language, job.Duration, due)
	case MsgSessionReminder:
		local := job.Due.In(t.loc)
		where := "(telefon)"
		if job.CustomerPhysicalType {
			where = fmt.Sprintf("(på plats i %s)", job.Town)
		}
		return fmt.Sprintf("Detta är en påminnelse om att du har en %stolkning %s kl %s på %s som vara i %d min. "+
			"Lycka till och kom ihåg att ge feedback efter utförd tolkning!",
			language, where, local.Format(timeLayout), local.Format(dateLayout), job.Duration)
	default:
		return ""
	}
}

// Accepted confirms an acceptance to the translator.
func (t Texts) Accepted(job *domain.Job, language string) string {
	return fmt.Sprintf("Du har nu accepterat och fått bokningen för %stolk %dmin %s", language, job.Duration, t.Due(job))
}

// Subject is the mail subject for an email intent.
func (t Texts) Subject(e *Email, language string) string {
	id := e.Payload.Job.ID
	switch e.Template {
	case TplJobCreated:
		return fmt.Sprintf("Vi har mottagit er tolkbokning. Bokningsnr: #%d", id)
	case TplJobAccepted:
		return fmt.Sprintf("Bekräftelse - tolk har accepterat er bokning (bokning # %d)", id)
	case TplJobReopened:
		return fmt.Sprintf("Vi har nu återöppnat er bokning av %stolk för bokning #%d", language, id)
	case TplSessionEnded:
		return fmt.Sprintf("Information om avslutad tolkning för bokningsnummer # %d", id)
	case TplStatusChanged:
		return fmt.Sprintf("Avbokning av bokningsnr: #%d", id)
	case TplCancelTranslator:
		return fmt.Sprintf("Information om avslutad tolkning för bokningsnummer #%d", id)
	case TplTranslatorChangedCustomer, TplTranslatorChangedOld, TplTranslatorChangedNew:
		return fmt.Sprintf("Meddelande om tilldelning av tolkuppdrag för uppdrag # %d", id)
	case TplDateChanged, TplLanguageChanged:
		return fmt.Sprintf("Meddelande om ändring av tolkbokning för uppdrag # %d", id)
	default:
		return fmt.Sprintf("Bokning #%d", id)
	}
}
