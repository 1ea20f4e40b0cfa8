// Command socs-calendar fetches complete SOCS school calendars from the
// command line or serves them over HTTP.
package main

// version will be set at build time
var version = "dev"

func main() {
	Execute(version)
}
