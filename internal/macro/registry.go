package macro

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/jeeftor/rowpilot/internal/constants"
)

// decodeFunc builds the payload for one kind from the raw step object
type decodeFunc func(data []byte) (Action, error)

// registry maps each kind to its decoder. Defaults are applied before the
// payload is unmarshalled so omitted fields keep sensible values.
var registry = map[Kind]decodeFunc{
	KindClick:       decoder(Click{Button: ButtonLeft, Clicks: 1}),
	KindMove:        decoder(Move{}),
	KindDrag:        decoder(Drag{Button: ButtonLeft}),
	KindScroll:      decoder(Scroll{}),
	KindType:        decoder(TypeText{UseVariables: true}),
	KindHotkey:      decoder(Hotkey{}),
	KindWait:        decoder(Wait{}),
	KindWaitImage:   decoder(WaitImage{Timeout: constants.DefaultWaitTimeout.Seconds(), Confidence: constants.DefaultImageConfidence}),
	KindWaitText:    decoder(WaitText{Timeout: constants.DefaultWaitTimeout.Seconds()}),
	KindScreenshot:  decoder(Screenshot{}),
	KindImageSearch: decoder(ImageSearch{Confidence: constants.DefaultImageConfidence}),
	KindTextSearch:  decoder(TextSearch{Confidence: constants.DefaultTextConfidence, MaxRetries: constants.DefaultTextRetries}),
	KindIf:          decoder(If{}),
	KindLoop:        decoder(Loop{Mode: LoopCount, Count: 1}),
	KindRepeatBegin: decoder(RepeatBegin{Mode: RepeatAll}),
	KindRepeatEnd:   decoder(RepeatEnd{MarkComplete: true, Status: constants.StatusDone}),
}

func decoder[T Action](defaults T) decodeFunc {
	return func(data []byte) (Action, error) {
		a := defaults
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		return a, nil
	}
}

// Kinds returns every registered kind
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}

// decodeAction peeks at the "kind" member and dispatches to the registered decoder
func decodeAction(data []byte) (Action, error) {
	raw := gjson.GetBytes(data, "kind")
	if !raw.Exists() {
		return nil, fmt.Errorf("step is missing \"kind\"")
	}
	kind, err := ParseKind(raw.String())
	if err != nil {
		return nil, err
	}
	action, err := registry[kind](data)
	if err != nil {
		return nil, fmt.Errorf("invalid %s step: %w", kind, err)
	}
	return action, nil
}
