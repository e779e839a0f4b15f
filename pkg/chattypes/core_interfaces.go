package chattypes

// Service is a named component started once at process startup and looked up by the shell.
type Service interface {
	Name() string
	Initialize() error
}
