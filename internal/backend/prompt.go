package backend

// InstructionPrompt is sent with every image. It asks for exactly one JSON
// object in the analysis record shape, with Korean text and price labels.
const InstructionPrompt = `The attached photo shows sliced raw fish (sashimi / hoe). Identify the fish and answer in Korean.

Respond with exactly one JSON object of this shape and nothing else:

{
  "fishName": "species name in Korean",
  "fishNameEn": "species name in English",
  "fishNameJp": "species name in Japanese",
  "confidence": integer from 0 to 100,
  "characteristics": ["3 to 5 visual characteristics"],
  "taste": "one sentence on taste",
  "texture": "one sentence on texture",
  "season": "peak season",
  "price": one of "저렴", "보통", "고급", "최고급",
  "recommendations": ["2 to 3 ways to enjoy it"],
  "nutrition": "one sentence on nutrition",
  "warning": "optional caution, omit if none"
}

If confidence is below 70, also include
"alternatives": [{"name": "other likely species", "probability": integer from 0 to 100}]
ordered from most to least likely. Omit "alternatives" otherwise.

Output JSON only. No Markdown, no commentary.`
