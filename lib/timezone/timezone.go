package timezone

import "time"

var Location = time.UTC

// force timestamps into UTC because chart validity times and run cycles
// are published in UTC; a server that ends up in some local zone would
// otherwise shift forecast instants across day boundaries when
// manipulating dates based on <time.Time>.Year()/Month()/Day()/Hour()/...
func Now() time.Time {
	return time.Now().In(Location)
}
