package object

// TagSigningPayload returns the canonical bytes that are signed for an
// annotated tag. The payload intentionally excludes the signature field
// itself.
func TagSigningPayload(t *TagObj) []byte {
	if t == nil {
		return nil
	}
	copyTag := *t
	copyTag.Signature = ""
	return MarshalTag(&copyTag)
}
