package manager

import (
	"fmt"
	"time"
)

// Notification is a user-facing message produced by a manager operation.
type Notification struct {
	Title   string
	Message string
	// TTL is how long an interactive front end should keep the message visible.
	TTL time.Duration
}

func rateLimitedNotification() Notification {
	return Notification{
		Title:   "GitHub rate limited",
		Message: "Too many requests were sent to GitHub. Set a GitHub token in the settings to see updates and new applications.",
		TTL:     30 * time.Second,
	}
}

func malformedMetadataNotification(name string) Notification {
	return Notification{
		Title:   "GitHub response unreadable",
		Message: fmt.Sprintf("The repository data of %s could not be read. Try again later.", name),
		TTL:     30 * time.Second,
	}
}

func installSucceededNotification(name string) Notification {
	return Notification{
		Title:   "Installation successful",
		Message: name + " has been installed.",
		TTL:     15 * time.Second,
	}
}

func installFailedNotification(name string, err error) Notification {
	return Notification{
		Title:   "Installation failed",
		Message: fmt.Sprintf("%s has failed to install: %v", name, err),
		TTL:     15 * time.Second,
	}
}

func runtimeInstalledNotification(path string) Notification {
	return Notification{
		Title:   "Runtime installed",
		Message: "Java runtime available at " + path + ".",
		TTL:     15 * time.Second,
	}
}

func managerInstalledNotification() Notification {
	return Notification{
		Title:   "Manager update downloaded",
		Message: "Run apply-update and restart the manager to complete the update.",
		TTL:     15 * time.Second,
	}
}

func launchingNotification(name string) Notification {
	return Notification{
		Title:   name + " is launching",
		Message: "The application will open momentarily.",
		TTL:     10 * time.Second,
	}
}

func missingRuntimeNotification(name string) Notification {
	return Notification{
		Title:   name + " failed to launch",
		Message: "The application requires a Java runtime. Install GraalVM or set the runtime path in the settings.",
		TTL:     15 * time.Second,
	}
}

func runtimeCheckNotification(build string, err error) Notification {
	if err != nil {
		return Notification{
			Title:   "Java check failed",
			Message: err.Error(),
			TTL:     15 * time.Second,
		}
	}

	return Notification{
		Title:   "Java check succeeded",
		Message: build + " has been checked.",
		TTL:     15 * time.Second,
	}
}
