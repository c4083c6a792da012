package schema

import (
	"time"

	"admissions-portal/internal/form/formdata"
)

// ReferenceDate is the institutional cutoff applicants' ages are measured against.
var ReferenceDate = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

const MinimumAge = 18

var (
	Genders          = []string{"male", "female", "other"}
	MaritalStatuses  = []string{"single", "married", "divorced"}
	EducationLevels  = []string{"none", "primary", "junior_secondary", "senior_secondary_certificate", "tertiary"}
	TertiaryLevels   = []string{"ond", "hnd", "nce", "bachelors", "masters", "doctorate"}
	StudyModes       = []string{"full_time", "part_time", "weekend"}
	SponsorshipTypes = []string{"self", "organization", "guardian"}
)

const MaxCertificates = 10

// ThirdPartySponsored reports whether sponsorship type requires sponsor details.
func ThirdPartySponsored(sponsorshipType string) bool {
	return sponsorshipType == "organization" || sponsorshipType == "guardian"
}

var sponsorDetailRules = []FieldRule{
	{Path: "accommodation.sponsorDetails.name", Label: "Sponsor name", Kind: KindText, MaxLen: 100},
	{Path: "accommodation.sponsorDetails.relationship", Label: "Sponsor relationship", Kind: KindText, MaxLen: 50},
	{Path: "accommodation.sponsorDetails.contact", Label: "Sponsor contact", Kind: KindText, MaxLen: 100},
}

// ApplicantSchema is the institute's application form.
func ApplicantSchema() *Schema {
	return &Schema{
		ReferenceDate: ReferenceDate,
		Fields: []FieldRule{
			{Path: "personalInfo.surname", Label: "Surname", Kind: KindText, MaxLen: 50},
			{Path: "personalInfo.firstName", Label: "First name", Kind: KindText, MaxLen: 50},
			{Path: "personalInfo.middleName", Label: "Middle name", Kind: KindText, Optional: true, MaxLen: 50},
			{Path: "personalInfo.contactAddress", Label: "Contact address", Kind: KindText, MinLen: 5, MaxLen: 200},
			{Path: "personalInfo.nationality", Label: "Nationality", Kind: KindText, MaxLen: 50},
			{Path: "personalInfo.stateOfOrigin", Label: "State of origin", Kind: KindText, MaxLen: 50},
			{Path: "personalInfo.religion", Label: "Religion", Kind: KindText, Optional: true, MaxLen: 50},
			{Path: "personalInfo.phone", Label: "Phone number", Kind: KindPhone},
			{Path: "personalInfo.email", Label: "Email", Kind: KindEmail},
			{Path: "personalInfo.dateOfBirth", Label: "Date of birth", Kind: KindDate, MinAge: MinimumAge},
			{Path: "personalInfo.gender", Label: "Gender", Kind: KindEnum, Enum: Genders},
			{Path: "personalInfo.maritalStatus", Label: "Marital status", Kind: KindEnum, Enum: MaritalStatuses},
			{Path: "personalInfo.hasDisability", Label: "Disability", Kind: KindBool, Optional: true},
			{Path: "personalInfo.disabilityDetails", Label: "Disability details", Kind: KindText, Optional: true, MaxLen: 500},

			{Path: "academicBackground.educationLevel", Label: "Education level", Kind: KindEnum, Enum: EducationLevels},
			{Path: "academicBackground.tertiaryEducation", Label: "Tertiary education", Kind: KindEnum, Optional: true, Enum: TertiaryLevels},
			{Path: "academicBackground.certificates", Label: "Certificates", Kind: KindList, MaxItems: MaxCertificates, Item: []FieldRule{
				{Path: "type", Label: "Certificate type", Kind: KindText, MaxLen: 50},
				{Path: "grade", Label: "Grade", Kind: KindText, MaxLen: 20},
				{Path: "year", Label: "Year", Kind: KindYear},
			}},

			{Path: "programSelection.programId", Label: "Program", Kind: KindText},
			{Path: "programSelection.courseId", Label: "Course", Kind: KindText},
			{Path: "programSelection.startDate", Label: "Start date", Kind: KindDate},
			{Path: "programSelection.studyMode", Label: "Study mode", Kind: KindEnum, Enum: StudyModes},
			{Path: "programSelection.priorExperience", Label: "Prior experience", Kind: KindText, Optional: true, MaxLen: 1000},
			{Path: "programSelection.careerGoals", Label: "Career goals", Kind: KindText, MinLen: 10, MaxLen: 500},

			{Path: "accommodation.needsAccommodation", Label: "Accommodation", Kind: KindBool, Optional: true},
			{Path: "accommodation.sponsorshipType", Label: "Sponsorship type", Kind: KindEnum, Enum: SponsorshipTypes},

			{Path: "referee.name", Label: "Referee name", Kind: KindText, MaxLen: 100},
			{Path: "referee.address", Label: "Referee address", Kind: KindText, MaxLen: 200},
			{Path: "referee.phone", Label: "Referee phone", Kind: KindPhone},
			{Path: "referee.email", Label: "Referee email", Kind: KindEmail},
			{Path: "referee.relationship", Label: "Relationship to applicant", Kind: KindText, MaxLen: 50},
		},
		CrossField: []CrossFieldRule{
			{
				Name:   "sponsor-details-required",
				Prefix: formdata.Accommodation,
				Check: func(d formdata.Data, s *Schema) FieldErrors {
					if !ThirdPartySponsored(d.String("accommodation.sponsorshipType")) {
						return nil
					}
					var errs FieldErrors
					for _, rule := range sponsorDetailRules {
						errs = append(errs, s.CheckField(d, rule.Path, rule)...)
					}
					return errs
				},
			},
			{
				Name:   "disability-details-required",
				Prefix: formdata.PersonalInfo,
				Check: func(d formdata.Data, s *Schema) FieldErrors {
					if !d.Bool("personalInfo.hasDisability") {
						return nil
					}
					if v, ok := d.Get("personalInfo.disabilityDetails"); !isBlank(v, ok) {
						return nil
					}
					return FieldErrors{{
						Path:    "personalInfo.disabilityDetails",
						Message: "Please describe your disability so we can support you",
					}}
				},
			},
		},
	}
}
