package entity

// Rule describes a pending in-app message and the screen that renders it.
type Rule struct {
	ID         string `json:"id"`
	ScreenID   string `json:"screen_id"`
	RuleName   string `json:"rule_name"`
	ScreenName string `json:"screen_name"`
}

// RuleScreen couples a rule with its rendered HTML. Persisted one file per
// rule; created when fetched from the server, deleted when superseded or
// explicitly cleared.
type RuleScreen struct {
	CreatedAt  int64  `json:"created_at"`
	Rule       Rule   `json:"rule"`
	HTMLScreen string `json:"html_screen"`
}
