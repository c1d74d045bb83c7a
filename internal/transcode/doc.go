// Package transcode converts recorded audio between containers and
// formats.
//
// The Engine decodes wav, mp3, and ogg input (identified by sniffing the
// leading bytes), applies the requested transforms in a fixed order, and
// encodes the result. WAV output is produced in-process; mp3 and ogg
// output is delegated to an Encoder, normally the ffmpeg client. A
// request that changes nothing returns the source bytes untouched.
package transcode
