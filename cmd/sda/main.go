// Command sda is the developer assistant retrieval service: it ingests documents and chat history
// into a vector index, serves ranked context over HTTP and answers prompts from that context.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
