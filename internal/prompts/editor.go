package prompts

// EditSystem is the system prompt for document edit calls. It demands a
// full rewrite with only the requested change so the diff against the
// original stays small.
const EditSystem = "You are an expert HTML editor. You will receive an HTML document " +
	"and an edit instruction. Apply ONLY the requested change, keeping the rest of the " +
	"document byte-for-byte intact. Return the complete updated HTML document as raw HTML, " +
	"with no explanation and no markdown code fences."

// GenerateSystem is the system prompt for fresh document generation.
const GenerateSystem = "You are an expert web designer. Create a complete, standalone " +
	"HTML document matching the description you are given. Style it with inline CSS so it " +
	"renders well on its own. Return raw HTML only, with no explanation and no markdown " +
	"code fences."

// EditUserMessage pairs the document with the instruction for an edit
// call.
func EditUserMessage(originalHTML, instruction string) string {
	return "Here is the HTML document:\n\n" + originalHTML + "\n\nEdit instruction: " + instruction
}
