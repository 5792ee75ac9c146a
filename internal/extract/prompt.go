package extract

// systemInstruction is the fixed instruction sent with every extraction
// request. It pins the exact field shape so the response can be decoded
// without per-bank templates.
const systemInstruction = "You are a data entry assistant. Extract bank transactions from this image.\n" +
	"Return ONLY raw JSON. The format must be a list of objects:\n" +
	"[{\"date\": \"YYYY-MM-DD\", \"description\": \"...\", \"withdrawal\": float, \"deposit\": float, \"balance\": float}]\n" +
	"Return 0 for empty numeric fields.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Do NOT use ```json or any Markdown.\n" +
	"Output must begin with \"[\" and end with \"]\"."
