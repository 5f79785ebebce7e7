package server

// Primary (page, head, body)

type pageData struct {
	PageType string
	Head     headData
	Body     bodyData
}

type headData struct {
	Title       string
	Description string
}

type bodyData struct {
	ErrorData  errData
	HomeData   homeData
	OAuthData  oauthData
	ManageData manageData
}

// Error page

type errData struct {
	Heading  string
	Message  string
	InfoLink string
}

// Home page

type homeData struct {
	InstallLink string
}

// OAuth result page (/app/oauth/create/)

type oauthData struct {
	Heading     string
	Message     string
	CallbackURL string
}

// Settings page (/app/manage/{uuid}/)

type manageData struct {
	TrmnlID      string
	Name         string
	SettingsID   int64
	Token        string
	SettingsLink string
	CanvasServer string
	TokenLink    string
	Success      bool
	Error        string
}

var statusNotFoundData = pageData{
	PageType: "error",
	Head: headData{
		Title: "404 Not Found",
	},
	Body: bodyData{
		ErrorData: errData{
			Heading:  "404",
			Message:  "Unknown page. The page you are looking for does not exist.",
			InfoLink: "/",
		},
	},
}

func errorPage(heading, message string) pageData {
	return pageData{
		PageType: "error",
		Head: headData{
			Title: heading,
		},
		Body: bodyData{
			ErrorData: errData{
				Heading: heading,
				Message: message,
			},
		},
	}
}
