package gate

// blocklist holds evergreen generics that never qualify as topics: beat
// labels, calendar words, filler, and ambiguous short strings. Checked
// case-insensitively against both canonical key and title.
var blocklist = map[string]bool{
	// beat and section labels
	"politics": true, "political": true, "government": true, "news": true,
	"media": true, "press": true, "world": true, "national": true,
	"international": true, "local": true, "state": true, "city": true,
	"country": true, "people": true, "public": true, "business": true,
	"sports": true, "entertainment": true, "lifestyle": true, "health": true,
	"science": true, "technology": true, "weather": true, "traffic": true,
	"report": true, "reports": true, "story": true, "stories": true,
	"article": true, "articles": true, "video": true, "videos": true,
	"photo": true, "photos": true, "opinion": true, "editorial": true,
	"analysis": true, "live": true, "breaking": true, "update": true,
	"updates": true, "latest": true, "exclusive": true, "developing": true,
	// calendar
	"today": true, "tonight": true, "yesterday": true, "tomorrow": true,
	"morning": true, "evening": true, "daily": true, "weekly": true,
	"week": true, "month": true, "year": true, "weekend": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	// filler, articles, prepositions
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"but": true, "of": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "with": true, "from": true, "by": true,
	"about": true, "as": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "new": true, "more": true,
	"most": true, "other": true, "some": true, "all": true, "many": true,
	"first": true, "last": true, "next": true, "best": true, "top": true,
	"big": true, "major": true, "key": true, "real": true, "true": true,
	// ambiguous short strings
	"am": true, "pm": true, "vs": true, "etc": true, "via": true,
	"amp": true, "rt": true, "lol": true, "omg": true,
}

func isBlocklisted(word string) bool {
	return blocklist[word]
}
