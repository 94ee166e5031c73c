// Package capsule writes converted Gemtext documents into the content
// root served by a Gemini server.
package capsule
