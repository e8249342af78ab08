// Package reminders schedules follow-up messages for unpaid invoices. It
// decides which step of the sequence an invoice is on, which language
// template to use, and when within the customer's contact calendar the
// message may go out. Rendering and SMTP delivery live with the mail worker.
package reminders

import (
	"golang.org/x/text/language"
)

// Step is one stage of the follow-up sequence.
type Step struct {
	// Name identifies the step in reminder logs.
	Name string
	// AfterDays is the minimum days overdue before this step applies.
	AfterDays int
	// Template is the message template family; the language suffix is
	// resolved per customer.
	Template string
}

// DefaultSequence escalates from a gentle nudge to a final notice. Steps are
// ordered by AfterDays ascending.
var DefaultSequence = []Step{
	{Name: "gentle", AfterDays: 1, Template: "reminder_gentle"},
	{Name: "firm", AfterDays: 7, Template: "reminder_firm"},
	{Name: "urgent", AfterDays: 14, Template: "reminder_urgent"},
	{Name: "final", AfterDays: 30, Template: "reminder_final"},
}

// StepFor picks the most escalated step the invoice qualifies for, or nil
// when it is not yet overdue far enough for any step.
func StepFor(sequence []Step, daysOverdue int) *Step {
	var chosen *Step
	for i := range sequence {
		if daysOverdue >= sequence[i].AfterDays {
			chosen = &sequence[i]
		}
	}
	return chosen
}

// supported lists the locales reminder templates exist in. English is the
// fallback for anything the matcher cannot place.
var supported = []language.Tag{
	language.English,
	language.Arabic,
}

var matcher = language.NewMatcher(supported)

// TemplateFor resolves the concrete template id for a step and a customer
// locale preference, e.g. "reminder_firm_ar".
func TemplateFor(step Step, preferred string) string {
	tag, _ := language.MatchStrings(matcher, preferred)
	base, _ := tag.Base()
	return step.Template + "_" + base.String()
}
