package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
}

// pin the timezone so date arithmetic (quarter boundaries, submission
// stamps) doesn't shift when the process runs on a host in another
// region
func Now() time.Time {
	return time.Now().In(Location)
}
