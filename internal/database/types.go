package database

// CurrentUser is the signed-in user record shown in the navigation bar.
// It is stored as JSON {"name": "..."} and is unrelated to the face template.
type CurrentUser struct {
	Name string `json:"name"`
}
