// Package topic implements MQTT topic filter matching: the linear,
// no-allocation scan the embedded client runs against its handler
// table on every inbound PUBLISH.
package topic

// Match reports whether topic matches filter, honoring the single-level
// wildcard '+' and the multi-level wildcard '#'. '#' is only meaningful
// as the last character of filter; elsewhere it is treated literally,
// same as any other byte that isn't '+' or a '/' boundary. A filter
// ending in "/#" also matches the topic consisting of just the levels
// before it — "sport/#" matches "sport" as well as "sport/tennis" — but
// a bare "#" does not match an empty topic.
//
// '+' matches exactly one level, including an empty one before a '/':
// "a/+/c" matches "a//c". A trailing '+' does not match an empty final
// level: "a/+" does not match "a/", and "+" does not match "".
//
// This walks both strings once, byte by byte, with no intermediate
// slices or allocations — it runs on every dispatch of every inbound
// message, so it has to stay cheap.
func Match(filter, topicName string) bool {
	fi, ti := 0, 0
	fn, tn := len(filter), len(topicName)

	for fi < fn {
		if ti >= tn {
			// Topic exhausted with filter remaining: only a trailing
			// "/#" still matches, covering the parent-level case.
			return fn-fi == 2 && filter[fi] == '/' && filter[fi+1] == '#'
		}
		if filter[fi] == '#' && fi == fn-1 {
			return true
		}
		if filter[fi] == '+' {
			for ti < tn && topicName[ti] != '/' {
				ti++
			}
			fi++
			continue
		}
		if topicName[ti] == '/' && filter[fi] != '/' {
			return false
		}
		if filter[fi] != topicName[ti] {
			return false
		}
		fi++
		ti++
	}

	return ti == tn
}
