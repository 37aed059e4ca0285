package core

type (
	// Logger is any service that can log messages.
	// expected args: error, map[string]interface{}, Person
	Logger interface {
		Debug(msg string, args ...interface{})
		Info(msg string, args ...interface{})
		Warn(msg string, args ...interface{})
		Error(msg string, args ...interface{})
		Fatal(msg string, args ...interface{})
	}

	// Person identifies the authenticated owner a log entry is about.
	Person struct {
		ID    string
		Name  string
		Email string
	}
)
