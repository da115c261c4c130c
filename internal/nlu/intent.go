package nlu

import "strings"

type Intent string

const (
	Weather       Intent = "weather"
	Time          Intent = "time"
	Date          Intent = "date"
	ReminderSet   Intent = "reminder_set"
	ReminderList  Intent = "reminder_list"
	Timer         Intent = "timer"
	Joke          Intent = "joke"
	Search        Intent = "search"
	OpenSite      Intent = "open_site"
	PlayMusic     Intent = "play_music"
	Define        Intent = "define"
	Calculate     Intent = "calculate"
	SystemControl Intent = "system_control"
	SmallTalk     Intent = "small_talk"
	Unknown       Intent = "unknown"
)

// Intents lists the closed intent set in prompt order.
func Intents() []Intent {
	return []Intent{
		Weather, Time, Date, ReminderSet, ReminderList, Timer, Joke, Search,
		OpenSite, PlayMusic, Define, Calculate, SystemControl, SmallTalk, Unknown,
	}
}

func (i Intent) Valid() bool {
	switch i {
	case Weather, Time, Date, ReminderSet, ReminderList, Timer, Joke, Search,
		OpenSite, PlayMusic, Define, Calculate, SystemControl, SmallTalk, Unknown:
		return true
	}
	return false
}

// Slot names the classifier is allowed to fill.
const (
	SlotCity     = "city"
	SlotQuery    = "query"
	SlotSong     = "song"
	SlotWord     = "word"
	SlotExpr     = "expr"
	SlotAmount   = "amount"
	SlotUnit     = "unit"
	SlotDatetime = "datetime"
	SlotTarget   = "target"
)

type Slots map[string]string

// Get returns the trimmed value of a slot, "" when absent.
func (s Slots) Get(name string) string {
	return strings.TrimSpace(s[name])
}

type Result struct {
	Intent Intent `json:"intent"`
	Slots  Slots  `json:"slots"`

	// Text is the utterance the result was detected from.
	Text string `json:"-"`
}

func unknown(text string) Result {
	return Result{Intent: Unknown, Slots: Slots{}, Text: text}
}
