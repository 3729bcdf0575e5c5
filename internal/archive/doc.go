// Package archive reads the container formats discovery can descend into:
// zip, gzip (including concatenated members), tar and bzip2.
//
// Formats form a closed enumeration with an explicit set type. Enablement
// carries the user's selection and converts to and from the serialized bit
// layout; Resolve turns it into the concrete set a walk should honour.
// Readers are built over a Source whose stream can be reopened, so stream
// formats are simply re-read whenever a member is requested.
package archive
