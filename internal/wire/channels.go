package wire

// Channel describes one pad's fixed identity: its index on the wire, the
// human-facing label, and the display color. Labels and colors are
// presentation metadata; only the index order is part of the wire contract.
type Channel struct {
	Index int    `json:"index"`
	Label string `json:"label"`
	Color string `json:"color"` // hex RGB for renderers
}

// Channels is the pad catalog in wire order.
var Channels = [NumChannels]Channel{
	{Index: 0, Label: "Ka Left", Color: "#ff6464"},
	{Index: 1, Label: "Don Left", Color: "#6464ff"},
	{Index: 2, Label: "Don Right", Color: "#64ff64"},
	{Index: 3, Label: "Ka Right", Color: "#ffc864"},
}

// ChannelByLabel returns the channel with the given label, or nil.
func ChannelByLabel(label string) *Channel {
	for i := range Channels {
		if Channels[i].Label == label {
			return &Channels[i]
		}
	}
	return nil
}
