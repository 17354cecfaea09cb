// Command embedadopt attaches blocks embedded in rich text to their host records.
package main

import "github.com/slattery/paragraphs-inline-entity-form-extras/cmd/embedadopt/cmd"

func main() {
	cmd.Execute()
}
