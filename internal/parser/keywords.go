package parser

// reservedWords is the keyword set normalization rule 2 (spec §4.2)
// upper-cases wherever it appears as a bare word outside quotes.
var reservedWords = map[string]bool{
	"CREATE": true, "TABLE": true, "NOT": true, "NULL": true,
	"PRIMARY": true, "KEY": true, "REFERENCES": true, "FOREIGN": true,
	"CHECK": true, "UNIQUE": true, "DEFAULT": true, "COLLATE": true,
	"AUTOINCREMENT": true, "AS": true, "ON": true, "BEGIN": true,
	"END": true, "AFTER": true, "BEFORE": true, "INSTEAD": true, "OF": true,
	"UPDATE": true, "INSERT": true, "DELETE": true, "INDEX": true,
	"TRIGGER": true, "VIEW": true, "VIRTUAL": true, "USING": true,
}
