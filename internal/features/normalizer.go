package features

import (
	"math"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Normalizer maps ApplicantProfiles to ScoringFeatures with a fixed vocabulary.
type Normalizer struct {
	vocab *Vocabulary
}

// NewNormalizer creates a normalizer. A nil vocabulary uses DefaultVocabulary.
func NewNormalizer(vocab *Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Normalizer{vocab: vocab}
}

// Vocabulary returns the encoding tables in use.
func (n *Normalizer) Vocabulary() *Vocabulary {
	return n.vocab
}

// Normalize validates the profile and encodes it in schema order.
// The first violation found is returned; nothing is defaulted.
func (n *Normalizer) Normalize(p *domain.ApplicantProfile) (*domain.ScoringFeatures, error) {
	if p == nil {
		return nil, domain.MissingFieldError("profile")
	}

	f := &domain.ScoringFeatures{}
	var err error

	ageGroup, err := AgeGroup(p)
	if err != nil {
		return nil, err
	}
	if f.AgeGroup, err = n.vocab.Code(domain.FeatureAgeGroup, ageGroup); err != nil {
		return nil, err
	}
	if f.Gender, err = n.encode(domain.FeatureGender, p.Gender); err != nil {
		return nil, err
	}
	if f.Region, err = n.encode(domain.FeatureRegion, p.Region); err != nil {
		return nil, err
	}
	if err := positive(domain.FeatureMonthlyIncome, p.MonthlyIncome); err != nil {
		return nil, err
	}
	f.MonthlyIncome = p.MonthlyIncome
	if f.EmploymentStatus, err = n.encode(domain.FeatureEmploymentStatus, p.EmploymentStatus); err != nil {
		return nil, err
	}
	if f.EducationGrade, err = n.encode(domain.FeatureEducationGrade, p.EducationGrade); err != nil {
		return nil, err
	}
	if f.LearningAdaptability, err = n.encode(domain.FeatureLearningAdaptability, p.LearningAdaptability); err != nil {
		return nil, err
	}
	if f.SupportServicesUsage, err = n.encode(domain.FeatureSupportServicesUsage, p.SupportServicesUsage); err != nil {
		return nil, err
	}
	if f.PsychosocialSupport, err = n.encode(domain.FeaturePsychosocialSupport, p.PsychosocialSupport); err != nil {
		return nil, err
	}
	if f.RepaymentHistory, err = n.encode(domain.FeatureRepaymentHistory, p.RepaymentHistory); err != nil {
		return nil, err
	}
	f.HasCollateral = boolCode(p.HasCollateral)
	f.MissingDocuments = boolCode(p.MissingDocuments)

	if err := positive("requested_amount", p.RequestedAmount); err != nil {
		return nil, err
	}

	return f, nil
}

func (n *Normalizer) encode(field, value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, domain.MissingFieldError(field)
	}
	return n.vocab.Code(field, value)
}

// AgeGroup returns the profile's age bracket, deriving it from Age when the
// bracket is not given.
func AgeGroup(p *domain.ApplicantProfile) (string, error) {
	if group := strings.TrimSpace(p.AgeGroup); group != "" {
		return group, nil
	}
	switch {
	case p.Age == 0:
		return "", domain.MissingFieldError(domain.FeatureAgeGroup)
	case p.Age < 18:
		return "", &domain.InvalidRangeError{Field: "age", Value: float64(p.Age), Reason: "applicant must be at least 18"}
	case p.Age > 120:
		return "", &domain.InvalidRangeError{Field: "age", Value: float64(p.Age), Reason: "implausible age"}
	case p.Age <= 24:
		return "18-24", nil
	case p.Age <= 34:
		return "25-34", nil
	case p.Age <= 44:
		return "35-44", nil
	default:
		return "45+", nil
	}
}

func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &domain.InvalidRangeError{Field: field, Value: v, Reason: "must be finite"}
	}
	if v <= 0 {
		return &domain.InvalidRangeError{Field: field, Value: v, Reason: "must be positive"}
	}
	return nil
}

func boolCode(b bool) int {
	if b {
		return 1
	}
	return 0
}
