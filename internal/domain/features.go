package domain

// Feature column names in the order the oracle was trained on.
const (
	FeatureAgeGroup             = "Age_Group"
	FeatureGender               = "Gender"
	FeatureRegion               = "Region"
	FeatureMonthlyIncome        = "monthly_income"
	FeatureEmploymentStatus     = "Employment_Status"
	FeatureEducationGrade       = "KCSE_Grade"
	FeatureLearningAdaptability = "Learning_Adaptability"
	FeatureSupportServicesUsage = "Support_Services_Usage"
	FeaturePsychosocialSupport  = "Psychosocial_Support"
	FeatureRepaymentHistory     = "repayment_history"
	FeatureHasCollateral        = "has_collateral"
	FeatureMissingDocuments     = "missing_documents"
)

var featureNames = []string{
	FeatureAgeGroup,
	FeatureGender,
	FeatureRegion,
	FeatureMonthlyIncome,
	FeatureEmploymentStatus,
	FeatureEducationGrade,
	FeatureLearningAdaptability,
	FeatureSupportServicesUsage,
	FeaturePsychosocialSupport,
	FeatureRepaymentHistory,
	FeatureHasCollateral,
	FeatureMissingDocuments,
}

// FeatureNames returns the oracle input columns in schema order.
func FeatureNames() []string {
	out := make([]string, len(featureNames))
	copy(out, featureNames)
	return out
}

// ScoringFeatures is the encoded, oracle-ready form of an ApplicantProfile.
type ScoringFeatures struct {
	AgeGroup             int     `json:"Age_Group"`
	Gender               int     `json:"Gender"`
	Region               int     `json:"Region"`
	MonthlyIncome        float64 `json:"monthly_income"`
	EmploymentStatus     int     `json:"Employment_Status"`
	EducationGrade       int     `json:"KCSE_Grade"`
	LearningAdaptability int     `json:"Learning_Adaptability"`
	SupportServicesUsage int     `json:"Support_Services_Usage"`
	PsychosocialSupport  int     `json:"Psychosocial_Support"`
	RepaymentHistory     int     `json:"repayment_history"`
	HasCollateral        int     `json:"has_collateral"`
	MissingDocuments     int     `json:"missing_documents"`
}

// Vector returns the features as a float64 slice ordered like FeatureNames.
func (f *ScoringFeatures) Vector() []float64 {
	return []float64{
		float64(f.AgeGroup),
		float64(f.Gender),
		float64(f.Region),
		f.MonthlyIncome,
		float64(f.EmploymentStatus),
		float64(f.EducationGrade),
		float64(f.LearningAdaptability),
		float64(f.SupportServicesUsage),
		float64(f.PsychosocialSupport),
		float64(f.RepaymentHistory),
		float64(f.HasCollateral),
		float64(f.MissingDocuments),
	}
}

// FeaturesFromVector rebuilds a ScoringFeatures from a schema-ordered vector.
func FeaturesFromVector(v []float64) (*ScoringFeatures, error) {
	if len(v) != len(featureNames) {
		return nil, &InvalidRangeError{
			Field:  "features",
			Value:  float64(len(v)),
			Reason: "vector length does not match feature schema",
		}
	}
	return &ScoringFeatures{
		AgeGroup:             int(v[0]),
		Gender:               int(v[1]),
		Region:               int(v[2]),
		MonthlyIncome:        v[3],
		EmploymentStatus:     int(v[4]),
		EducationGrade:       int(v[5]),
		LearningAdaptability: int(v[6]),
		SupportServicesUsage: int(v[7]),
		PsychosocialSupport:  int(v[8]),
		RepaymentHistory:     int(v[9]),
		HasCollateral:        int(v[10]),
		MissingDocuments:     int(v[11]),
	}, nil
}
