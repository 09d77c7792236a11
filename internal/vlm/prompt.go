package vlm

import "fmt"

const ConversionPrompt = `Convert this page to DocTags.

Emit one <otsl> element per table with a bbox attribute, a <header> row and one <row> per data row, every cell as a <cell> with its own bbox. Emit running text as <text> elements with a bbox. Put the page title and number in <document_meta>. Coordinates are "x1 y1 x2 y2" in PDF points from the top-left corner.

Respond with ONLY the DocTags document.`

// BuildPagePrompt adds the page number to the conversion prompt.
func BuildPagePrompt(page int) string {
	return fmt.Sprintf("%s\n\nPage: %d", ConversionPrompt, page+1)
}
