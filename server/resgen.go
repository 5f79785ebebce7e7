package server

import (
	"net/url"
	"strconv"
	"strings"

	"canvastrmnl/lms"
)

// Merge variables sent alongside the markup so TRMNL-side templates can use
// the raw data.

type mergeCourse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type mergeAssignment struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"courseId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// Milliseconds since the Unix epoch, null when undated.
	DueAt *int64 `json:"dueAt"`
}

type mergeVariables struct {
	Courses     map[int64]mergeCourse     `json:"courses"`
	Assignments map[int64]mergeAssignment `json:"assignments"`
}

func genMergeVariables(data lms.Data) mergeVariables {
	vars := mergeVariables{
		Courses:     make(map[int64]mergeCourse, len(data.Courses)),
		Assignments: make(map[int64]mergeAssignment, len(data.Assignments)),
	}
	for id, c := range data.Courses {
		vars.Courses[id] = mergeCourse{ID: c.ID, Name: c.Name}
	}
	for id, a := range data.Assignments {
		ma := mergeAssignment{
			ID:          a.ID,
			CourseID:    a.CourseID,
			Name:        a.Name,
			Description: a.Description,
		}
		if a.DueAt != nil {
			ms := a.DueAt.UnixMilli()
			ma.DueAt = &ms
		}
		vars.Assignments[id] = ma
	}
	return vars
}

func genHomePage(trmnlBase string) pageData {
	return pageData{
		PageType: "home",
		Head: headData{
			Title:       "Canvas-TRMNL",
			Description: "See your canvas assignments at a glance.",
		},
		Body: bodyData{
			HomeData: homeData{
				InstallLink: trmnlBase + "/plugin_settings/new?keyname=canvas_lms",
			},
		},
	}
}

func genDocsPage() pageData {
	return pageData{
		PageType: "docs",
		Head: headData{
			Title:       "Help",
			Description: "Setting up the Canvas LMS plugin.",
		},
	}
}

func genOAuthPage(heading, message, callback string) pageData {
	return pageData{
		PageType: "oauth",
		Head: headData{
			Title:       "Linking Account",
			Description: "Creating a plugin instance...",
		},
		Body: bodyData{
			OAuthData: oauthData{
				Heading:     heading,
				Message:     message,
				CallbackURL: callback,
			},
		},
	}
}

func genManagePage(trmnlBase string, c consumerData, token string) pageData {
	return pageData{
		PageType: "manage",
		Head: headData{
			Title: "Settings",
		},
		Body: bodyData{
			ManageData: manageData{
				TrmnlID:      c.TrmnlID,
				Name:         c.Name,
				SettingsID:   c.SettingsID,
				Token:        token,
				SettingsLink: trmnlBase + "/plugin_settings/" + strconv.FormatInt(c.SettingsID, 10) + "/edit?keyname=canvas_lms",
			},
		},
	}
}

// normalizeDomain reduces what a user typed as their Canvas server to a bare
// hostname. It returns "" when nothing usable is left.
func normalizeDomain(domain string) string {
	domain = strings.TrimSpace(domain)
	if i := strings.Index(domain, "://"); i != -1 {
		domain = domain[i+3:]
	}
	if domain == "" {
		return ""
	}
	u, err := url.Parse("https://" + domain)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
