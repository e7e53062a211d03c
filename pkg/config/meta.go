package config

// Meta holds information about the application
type Meta struct {
	ID        string
	Name      string
	Desc      string
	URL       string
	Author    string
	Version   string
	UserAgent string
}
