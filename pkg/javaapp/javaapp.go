// pkg/javaapp/javaapp.go
// Package javaapp abstracts the different flavours of Java application images
// the operator can run and derives the container launch command for each.
package javaapp

import (
	"fmt"
	"path"
	"strings"
)

const (
	buildpackJavaPath     = "/layers/paketo-buildpacks_bellsoft-liberica/jre/bin/java"
	buildpackLauncherPath = "/workspace/org/springframework/boot/loader/JarLauncher.class"
	buildpackClassPath    = "/workspace"
	appDir                = "/app"
)

// Application represents one Java application flavour inside the workload image.
type Application interface {
	// Command returns the container command starting the application.
	Command() []string
}

// ExecutableJar is a Java application packaged as a single executable jar.
type ExecutableJar struct {
	// JarPath is the path to the executable jar inside the image.
	JarPath string
}

func (a ExecutableJar) Command() []string {
	return []string{"java", "-jar", a.JarPath}
}

// Buildpack is a Java application image created with Cloud Native Buildpacks.
type Buildpack struct{}

func (Buildpack) Command() []string {
	return []string{buildpackJavaPath, "-cp", buildpackClassPath, "org.springframework.boot.loader.JarLauncher"}
}

// ImageInspector exposes the filesystem facts needed to classify an image.
// The production implementation inspects the built image; tests use a fake.
type ImageInspector interface {
	// Exists reports whether the given path exists in the image.
	Exists(path string) bool
	// IsDir reports whether the given path is a directory in the image.
	IsDir(path string) bool
	// ListFiles returns the file names directly under the given directory.
	ListFiles(dir string) []string
}

// DetectionError reports that the image layout does not match any known Java
// application flavour. The reconciler treats it as a blocking condition: the
// image must change before the workload can start.
type DetectionError struct {
	Reason string
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("cannot determine Java application type: %s", e.Reason)
}

// Detect classifies the workload image. Buildpack images are recognized by
// the bundled JRE and Spring Boot loader; otherwise a single executable jar
// under /app is expected.
func Detect(inspector ImageInspector) (Application, error) {
	if inspector.Exists(buildpackJavaPath) && inspector.Exists(buildpackLauncherPath) {
		return Buildpack{}, nil
	}
	if inspector.IsDir(appDir) {
		var jars []string
		for _, name := range inspector.ListFiles(appDir) {
			if strings.HasSuffix(name, ".jar") {
				jars = append(jars, name)
			}
		}
		switch len(jars) {
		case 0:
			return nil, &DetectionError{Reason: "no jar file found in " + appDir}
		case 1:
			return ExecutableJar{JarPath: path.Join(appDir, jars[0])}, nil
		default:
			return nil, &DetectionError{Reason: fmt.Sprintf("multiple jar files found in %s: %v", appDir, jars)}
		}
	}
	return nil, &DetectionError{Reason: "unknown image layout"}
}
