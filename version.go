package zipkinv1

// Version is the released version of this library.
const Version = "0.4.0"
