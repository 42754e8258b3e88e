package lavakit

import "github.com/disgoorg/snowflake/v2"

// Snowflake is an opaque identifier for a chat-platform entity (guild,
// channel, user). It is never interpreted by lavakit beyond equality and
// string conversion.
type Snowflake = snowflake.ID

// ParseSnowflake parses s into a Snowflake, returning false if s is not a
// valid snowflake string.
func ParseSnowflake(s string) (Snowflake, bool) {
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0, false
	}
	return id, true
}
