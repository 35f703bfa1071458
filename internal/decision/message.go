package decision

import (
	"fmt"
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
	"golang.org/x/text/message"
)

// Message renders the customer-facing text for a decision.
func (e *Engine) Message(d domain.Outcome, score int, amount *float64) string {
	switch d {
	case domain.OutcomeApproved:
		if amount == nil {
			return fmt.Sprintf("Congratulations! Your loan has been approved with a credit score of %d.", score)
		}
		return fmt.Sprintf(
			"Congratulations! Your loan has been approved with a credit score of %d. The approved loan amount is %s %s.",
			score, e.currency, e.FormatAmount(*amount),
		)
	case domain.OutcomeReview:
		return fmt.Sprintf("Your loan application is under review. A loan officer will contact you shortly. (Credit score: %d)", score)
	default:
		return fmt.Sprintf("We're sorry, your loan application was not approved at this time. (Credit score: %d)", score)
	}
}

// FormatAmount prints a whole amount with thousands separators.
func (e *Engine) FormatAmount(amount float64) string {
	p := message.NewPrinter(e.lang)
	return p.Sprintf("%d", int64(math.Round(amount)))
}
