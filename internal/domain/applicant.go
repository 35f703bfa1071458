package domain

// ApplicantProfile is the raw loan application as submitted.
// It is never persisted and never mutated after decoding.
type ApplicantProfile struct {
	// Age bracket, or a numeric age from which the bracket is derived.
	AgeGroup string `json:"age_group,omitempty"`
	Age      int    `json:"age,omitempty"`

	Gender           string  `json:"gender"`
	Region           string  `json:"region"`
	MonthlyIncome    float64 `json:"monthly_income"`
	EmploymentStatus string  `json:"employment_status"`

	// Secondary school (KCSE) grade.
	EducationGrade string `json:"kcse_grade"`

	LearningAdaptability string `json:"learning_adaptability"`
	SupportServicesUsage string `json:"support_services_usage"`
	PsychosocialSupport  string `json:"psychosocial_support"`

	// Used by the rule table as well as the oracle.
	RepaymentHistory string `json:"repayment_history"`
	HasCollateral    bool   `json:"has_collateral"`
	MissingDocuments bool   `json:"missing_documents"`

	RequestedAmount float64 `json:"requested_amount"`
}

// Repayment history values referenced by the rule table.
const (
	RepaymentGood    = "good"
	RepaymentAverage = "average"
	RepaymentPoor    = "poor"
)
