// Package script parses scene scripts, the text format describing an
// ordered sequence of scenes to render.
//
// The format is line oriented:
//
//	# The Long Way Home
//
//	## SCENE: rooftop-chase
//	title: Rooftop chase
//	location: downtown rooftop
//	time: night
//	mood: tense
//	characters: Mara, The Courier
//	image: assets/rooftop.png
//	duration: 8
//	- "Stop running!"
//	- "Not a chance."
//
//	### SHOT: closeup
//	A tight closeup of Mara's face, rain streaking down.
//
// A leading "#" heading names the script. Each "## SCENE:" heading opens a
// scene whose body is key: value directives and "- " dialogue lines. A
// "### SHOT:" heading inside a scene adds a dependent sub-shot whose body
// is free prompt text. Parsing is strict: unrecognized lines fail with
// their line number rather than being silently dropped.
package script
