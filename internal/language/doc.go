// Package language normalises caption language tags.
//
// Caption sources report languages as BCP 47 tags ("en", "en-GB"), ISO 639-2
// codes ("eng") or occasionally plain words ("English"). Helpers here reduce
// all of those to a primary ISO 639-1 subtag so track selection and the
// configured preference list compare like with like.
package language
