package core

// TextRubricPrompt is the evaluation request template for text posts.
// It takes two arguments: the rendered conversation context and the
// candidate message. The sign type tags must match the SignType values
// the verdict contract accepts.
const TextRubricPrompt = `You are a spam detection system for a group chat. Analyze the new message
within the context of the ongoing conversation and determine whether it is
unsolicited advertising (spam).

Look for these signs, each identified by its type tag:
- monetary_gain: promises of high earnings in a short period or with little effort
- off_platform_redirect: calls to write to private messages or move the conversation elsewhere for "details"
- vague_work_offer: remote work or collaboration offers with no specifics about the actual job
- easy_recruitment: recruiting with minimal requirements, "no experience needed, we teach everything"
- formatting_abuse: emoji walls, mixed character sets, or unusual formatting meant to grab attention or evade filters
- non_sequitur: out of context of the ongoing conversation
- sales_pitch: generic promotional or sales language

Be cautious not to flag a message simply because it mentions job
opportunities or collaboration; genuine messages may share one
characteristic with spam. Only a clear pattern of unsolicited, suspicious,
or off-topic content counts.

Respond with a JSON object containing:
- is_spam: boolean (true if the message is spam)
- confidence: number between 0 and 1 (how confident you are)
- signs: array of {"type": "<sign type tag>", "description": "<what you saw>"} for every sign present
- explanation: string (brief explanation of your judgment)

Context of the most recent messages in the chat:
%s

New message to be evaluated:
%s

Respond only with the JSON object and nothing else.`

// ImageRubricPrompt is the evaluation request for image posts.
const ImageRubricPrompt = `You are a spam detection system for a group chat. Analyze the attached image
and determine whether it is unsolicited advertising (spam).

Look for these signs, each identified by its type tag:
- promo_banner: promotional banners or advertising layouts
- qr_code: QR codes pointing viewers somewhere
- adult_content: adult or sexually suggestive content
- scam_offer: get-rich-quick or too-good-to-be-true offers
- pyramid_scheme: pyramid or MLM promotion
- crypto_promotion: cryptocurrency promotion
- contact_overlay: phone numbers, handles, or links overlaid on the image

Respond with a JSON object containing:
- is_spam: boolean (true if the image is spam)
- confidence: number between 0 and 1 (how confident you are)
- signs: array of {"type": "<sign type tag>", "description": "<what you saw>"} for every sign present
- explanation: string (brief explanation of your judgment)

Respond only with the JSON object and nothing else.`
