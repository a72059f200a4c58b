// Package clock provides epoch time sources for SAS token expiry.
//
// Devices in the field frequently boot with a wildly wrong RTC, and a
// SAS token signed against bad time is rejected by the hub. This
// package offers two sources:
//
//   - NTPSource queries an NTP server so token expiry is anchored to
//     real time even when the local clock is wrong
//   - SystemSource trusts the local clock, for hosts with reliable time
//
// Both return epoch seconds; callers decide the fallback policy when a
// source fails.
//
// Usage:
//
//	src := clock.NewNTPSource("pool.ntp.org", 5*time.Second)
//	epoch, err := src.Now()
package clock
