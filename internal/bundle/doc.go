// Package bundle assembles stage artifacts and metadata into the product
// directory named by the identity.
//
// Assembly happens in a hidden staging directory inside the working
// directory. The staging directory is renamed to its final name only after
// every fatal step and the metadata descriptors have succeeded, so a bundle
// is either complete or absent.
package bundle
