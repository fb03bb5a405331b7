// Package platform talks to the social platform's Graph-style publishing API.
//
// Publishing is two calls: create a media container for the asset and
// caption, then publish the container. Video containers are polled until the
// platform finishes processing them. Every outbound request passes through a
// shared rate limiter.
//
// Any transport error, timeout, non-2xx status or 2xx response without an id
// is a failure. The caller cannot tell "not published" apart from
// "published but the acknowledgement was lost", so retries may duplicate a
// post.
package platform
