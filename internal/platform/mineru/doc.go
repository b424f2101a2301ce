// Package mineru is a client for the MinerU v4 document extraction API.
//
// URL inputs are submitted as single extraction tasks; uploaded files go
// through the batch endpoint and a presigned PUT. Finished jobs are
// collected by downloading the result archive and turning its markdown into
// text and its images into domain artifacts.
package mineru
