package directory

import "saedportal.org/internal/portal"

// SampleInstructors is the bundled fallback directory shown when the
// backend cannot serve the public listing. All entries are approved so
// the map view renders them without a live review pass.
func SampleInstructors() []portal.InstructorRecord {
	return []portal.InstructorRecord{
		{
			ID:          "inst-1",
			Name:        "Michael Ade",
			Email:       "michael.ade@nysc.gov.ng",
			Headline:    "WEB DESIGNER | SOFTWARE DEV.",
			About:       "Expert mentor with over 10 years experience in tech education.",
			Skills:      []string{"Web Design", "Graphic Design", "Software Engineering"},
			PhoneNumber: "+234 803 123 4567",
			Location: portal.Location{
				Lat:     9.0765,
				Lng:     7.3986,
				Address: "Aladinz Academy",
				State:   "Kaduna",
				LGA:     "Chikun",
			},
			Status:      portal.ApprovalApproved,
			Rating:      5.0,
			LinkedInURL: "https://linkedin.com/",
		},
		{
			ID:          "inst-2",
			Name:        "Mrs. Chidimma Okeke",
			Email:       "chidimma.okeke@nysc.gov.ng",
			Headline:    "Creative Director | Fashion Designer",
			About:       "Leading instructor in the creative sector specializing in modern tailoring.",
			Skills:      []string{"Tailoring & Fashion Design", "Hat & Fascinator Making"},
			PhoneNumber: "+234 812 987 6543",
			Location: portal.Location{
				Lat:     6.5244,
				Lng:     3.3792,
				Address: "32 Herbert Macaulay Way, Yaba",
				State:   "Lagos",
				LGA:     "Surulere",
			},
			Status:      portal.ApprovalApproved,
			Rating:      5.0,
			ReviewCount: 95,
			LinkedInURL: "https://linkedin.com/",
		},
	}
}
