// Command server runs the blog.
//
//	server serve                 start the HTTP server
//	server user create ...       add an account without the web form
//	server version               print the build version
//
// Configuration comes from flags, a config file, .env and FLATBLOG_*
// environment variables; see internal/config.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// cobra has already printed the error.
		os.Exit(1)
	}
}
