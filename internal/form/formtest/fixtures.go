// Package formtest provides application drafts for tests.
package formtest

import "admissions-portal/internal/form/formdata"

func PersonalInfo() map[string]interface{} {
	return map[string]interface{}{
		"surname":        "Doe",
		"firstName":      "John",
		"contactAddress": "12 Marina Road, Lagos",
		"nationality":    "Nigerian",
		"stateOfOrigin":  "Lagos",
		"phone":          "+2348012345678",
		"email":          "john.doe@example.com",
		"dateOfBirth":    "2000-05-17",
		"gender":         "male",
		"maritalStatus":  "single",
		"hasDisability":  false,
	}
}

func AcademicBackground() map[string]interface{} {
	return map[string]interface{}{
		"educationLevel": "senior_secondary_certificate",
		"certificates": []interface{}{
			map[string]interface{}{"type": "WAEC", "grade": "B2", "year": "2018"},
		},
	}
}

func ProgramSelection() map[string]interface{} {
	return map[string]interface{}{
		"programId":   "electrical-installation",
		"courseId":    "domestic-wiring",
		"startDate":   "2025-09-01",
		"studyMode":   "full_time",
		"careerGoals": "Become a certified electrical installer",
	}
}

func Accommodation() map[string]interface{} {
	return map[string]interface{}{
		"needsAccommodation": false,
		"sponsorshipType":    "self",
	}
}

func Referee() map[string]interface{} {
	return map[string]interface{}{
		"name":         "Mary Major",
		"address":      "4 Broad Street, Lagos",
		"phone":        "+2348098765432",
		"email":        "mary.major@example.com",
		"relationship": "Principal",
	}
}

// ValidDraft passes every step.
func ValidDraft() formdata.Data {
	return formdata.Data{
		formdata.PersonalInfo:       PersonalInfo(),
		formdata.AcademicBackground: AcademicBackground(),
		formdata.ProgramSelection:   ProgramSelection(),
		formdata.Accommodation:      Accommodation(),
		formdata.Referee:            Referee(),
	}
}
