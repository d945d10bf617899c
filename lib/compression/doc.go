// Package compression selects and runs the image codecs used for frame channel replies.
//
// Two codecs exist: a lossy JPEG codec for 8 bit RGBA color channels and a lossless Snappy
// codec for FLOAT32 depth channels. Which codecs a connection may use is negotiated once:
// the client announces its Features, the server intersects them with Available().
//
// Select is a pure function of (purpose, format, client features, server features). It
// returns nil if the channel has to be sent raw:
//
//	codec := compression.Select(compression.PurposeColor, ch.Type, client, server)
//	if codec != nil {
//		compressed, err := codec.Compress(ch.Data, ch.Width, ch.Height)
//		...
//	}
package compression
