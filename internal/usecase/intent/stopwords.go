package intent

// stopWords are dropped by the heuristic tokenizer. English-only; queries in
// other languages still work through the model path.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "app": true, "apps": true,
	"application": true, "are": true, "as": true, "at": true, "be": true,
	"best": true, "but": true, "by": true, "can": true, "do": true,
	"find": true, "for": true, "from": true, "get": true, "good": true,
	"have": true, "help": true, "helps": true, "how": true, "i": true,
	"in": true, "is": true, "it": true, "like": true, "looking": true,
	"made": true, "me": true, "my": true, "need": true, "new": true,
	"of": true, "on": true, "one": true, "or": true, "some": true,
	"something": true, "take": true, "that": true, "the": true,
	"this": true, "to": true, "want": true, "what": true, "which": true,
	"will": true, "with": true, "would": true,
}
